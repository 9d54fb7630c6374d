/*
Package config loads smartscp settings from YAML, HCL or JSON files.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+-----+ +----+----+ +-----+-----+
	|   YAML    | |   HCL   | |   JSON    |
	|  Parser   | | Parser  | |  Parser   |
	+-----------+ +---------+ +-----------+

🎯 Purpose:
- Select the ignore file name and extra exclude patterns
- Choose the transport and its ssh/scp executables
- Bound walker workers and transfer concurrency

🔄 Flow:
1. An explicit --config path wins
2. Otherwise $XDG_CONFIG_HOME/smartscp/config.{yaml,yml,hcl,json} is searched
3. Otherwise defaults apply

Parsers register themselves in init and are chosen by file extension. Unknown
keys are rejected by every format.
*/
package config
