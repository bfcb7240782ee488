/*
Package storage provides the BoltDB-backed deployment ledger.

The ledger lives next to config.yml in <datadir>/hoist.db and holds two
buckets:

	artifacts   path -> {builder, sha256 digest, written_at}
	runs        sequence -> {action, versions, started/finished, outcome}

The builder pipeline records the digest of every file it writes. On the next
update it compares the on-disk digest to the recorded one; a mismatch means
an operator edited a generated file, and the file is copied to <file>.bak
before it is regenerated. The runs bucket backs the "last successful run"
line printed by printenv.

Values are JSON encoded. Reads use db.View and writes db.Update, so every
operation is a single ACID transaction. The database is opened with a 5 second
lock timeout; two concurrent hoist processes on the same data directory are not
supported and the second one fails to open the ledger.

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	last, err := store.LastSuccessfulRun()
	if errors.Is(err, storage.ErrNotFound) {
		// never deployed
	}
*/
package storage
