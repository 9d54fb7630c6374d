/*
Package ignore evaluates version-control ignore rules for a local tree.

	+-----------+     +-----------+     +-----------+
	|  Pattern  | --> |  RuleSet  | --> | Resolver  |
	| (1 line)  |     | (1 file)  |     | (chain)   |
	+-----------+     +-----------+     +-----------+
	                        ^
	                        |
	                  +-----------+
	                  |   Cache   |
	                  +-----------+

🎯 Purpose:
- Parse per-directory rule files (".gitignore" by default) into patterns
- Merge every rule file from the repository top down to an entry's parent
- Answer "is this path ignored?" with last-match-wins semantics

🔄 Evaluation:
Rule sets are visited root-most first, patterns in declaration order. Every
matching pattern overwrites a running boolean: plain patterns set it, "!"
patterns clear it. The final value is the decision.

⚡ Caching:
A Cache loads each directory's rule file at most once per invocation. Loads are
deduplicated per directory key, so concurrent walkers never read the same file
twice.
*/
package ignore
