/*
Package builder generates the on-disk deployment artifacts from a Context.

A Pipeline runs its builders in a fixed order, because later builders read
fields earlier ones set:

	cert     TLS mode, certificates, identity signing certificate
	url      scheme://domain, https iff TLS is on
	nginx    nginx/default.conf
	env      env/global.env, env/mssql.env and their .override.env files
	appid    web/app-id.json
	compose  docker/docker-compose.yml

Each builder has an install entry point, which may ask questions and pick
defaults, and an update entry point, which must keep what operators edited.
Files hoist owns are written through Writer.WriteArtifact, which records a
SHA-256 digest of each file in the storage ledger. When an update finds that
a managed file no longer matches its recorded digest, the operator's version
is copied to <file>.bak before the file is regenerated. Override env files and
docker-compose.override.yml belong to the operator and are never tracked.

Every builder is idempotent: running it twice with an unchanged Context leaves
byte-identical files. Generated secrets are stored in Context.Install on first
use so later runs reuse them.

All file access goes through a billy.Filesystem rooted at the data directory:

	fs := osfs.New(dataDir)
	w := builder.NewWriter(fs, ledger)
	p := builder.NewDefaultPipeline(w, prompter, acquirer, os.Stdout)
	if err := p.Install(ctx, c); err != nil {
		return err
	}
*/
package builder
