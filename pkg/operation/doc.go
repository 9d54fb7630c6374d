/*
Package operation runs a transfer from parsed endpoints to moved bytes.

	+-------------+     +-------------+     +-------------+
	|  Endpoints  | --> |  Manifest   | --> |    Plan     |
	| (Transfer)  |     | (Walk/List) |     | (Operations)|
	+-------------+     +-------------+     +------+------+
	                                               |
	                                        +------+------+
	                                        |   Runner    |
	                                        | (Transport) |
	                                        +-------------+

🎯 Purpose:
- Resolves the destination the way scp does (copy into an existing directory)
- Builds the manifest: an ignore-aware walk for uploads, a remote listing for downloads
- Runs the plan through a transport, directories first, files sync or async

⚡ Key Responsibilities:
- Destination conflict detection
- Wiring the ignore resolver into the walker
- Per-operation failure collection without stopping other copies

🔍 Example:

	op, err := operation.New(operation.Options{FS: afero.NewOsFs(), Transport: t})
	res, err := op.Transfer(ctx, spec)
*/
package operation
