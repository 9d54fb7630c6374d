/*
Package walker enumerates a local tree into an ordered transfer manifest.

Directories are listed before anything below them and an ignored directory is
never opened. Symbolic links are followed to files and to directories that do
not lead back onto the current path.
*/
package walker
