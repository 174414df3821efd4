// Package app contains the core application logic. It defines the main App
// struct, its configuration, the fixed pthreadpool build pipeline and the
// generation lifecycle, decoupled from any specific entrypoint like a CLI.
package app
