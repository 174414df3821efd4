// Package ninja is the emission sink for generated build graphs. A Writer
// accepts variable, pool and rule declarations followed by build edges, keeps
// them in memory in emission order, enforces the structural contract of the
// graph (rules before edges, unique outputs, no undeclared rules or pools)
// and finally serializes the whole graph as a Ninja build file.
//
// Nothing is written until WriteTo is called, so a generation run that fails
// part way never leaves a partial build file behind.
package ninja
