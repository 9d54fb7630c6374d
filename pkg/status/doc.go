/*
Package status collects the non-fatal conditions of one smartscp run.

	+-------------+      +-------------+      +-------------+
	|   Walker    | ---> |   Report    | ---> |  Formatter  |
	|  Resolver   | warn | (warnings,  |      |  (console)  |
	+-------------+      |  ignored)   |      +-------------+
	                     +-------------+

🎯 Purpose:
- Record warnings keyed by kind while the tree is walked
- Remember which paths the ignore rules excluded
- Format warnings and the end-of-run summary for the terminal

A Report is safe for concurrent use by parallel walkers. Warnings never stop
a transfer; they are printed once the run finishes.
*/
package status
