/*
Package types defines the Context aggregate that every hoist pipeline stage
receives.

A Context is constructed once per process from the raw argument list. Its
Config and Install sections are the persisted part of the deployment: the
install command fills them in, update and printenv load them from config.yml,
and the state package writes them back at the end of install and rebuild.

Context is passed explicitly by pointer through each stage; nothing in hoist
keeps it in package-level state, so stages can be tested with synthetic
values:

	ctx := types.NewContext(nil)
	ctx.Install.Domain = "vault.example.com"
	ctx.Config.Ssl = true
	ctx.ComputeURL() // https://vault.example.com
*/
package types
