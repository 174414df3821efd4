// Package configuration turns high-level build actions (compile, link,
// archive, finalize, translate, run, install) into build edges.
//
// A Configuration holds the declared toolchain variables and the rule catalog.
// Directory context lives in a separate Session that the caller owns and
// mutates between build phases; every operation takes the Session by pointer,
// resolves relative paths against it at call time and returns the absolute
// path of what it produced, so outputs can be chained into later calls even
// after the Session has moved on to another phase.
package configuration
