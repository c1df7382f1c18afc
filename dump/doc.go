/*
Package dump provides I/O operations for collected states of the rating
ledger.

State collection allows you to back up a ledger, move it between storage
backends and seed tests with realistic data. Dumps are stored in the file
system using human-readable encoding: decoded user records go to a JSON file,
while all storage items (users, history and policy) go to a CSV file in raw
form, so that the state can be restored byte by byte.
*/
package dump
