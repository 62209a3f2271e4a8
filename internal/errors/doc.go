// Package errors provides coded, actionable errors for the vstore CLI.
//
// Each code maps to a category, a short message and a hint:
//   - config: the config file or environment could not be loaded
//   - storage: a storage backend could not be opened or read
//   - server: the HTTP server failed
//   - cli: a command received bad arguments
//
// # Usage
//
//	err := errors.New("E101").
//	    WithSubject("configs/vstore.toml").
//	    Wrap(fsErr)
//
//	errors.Print(os.Stderr, err)
//	// ERROR E101: Config file not found
//	//
//	//   configs/vstore.toml
//	//
//	//   Hint: Check the path or omit --config ...
//
// Errors with the same code match under errors.Is.
package errors
