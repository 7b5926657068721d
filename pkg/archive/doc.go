// Package archive reads and writes line-oriented JSON tweet archives.
//
// The archive package handles:
//   - Naming archive files by URL-encoded query plus local timestamp
//   - Appending one raw JSON record per line, checkpointed per record
//   - Dropping IDs already written during the run
//   - Inferring where a previous run left off
//
// Archives hold tweets newest-first, the order search returns them in.
// That makes resuming cheap: the most recent tweet of the most recent
// non-empty archive is the since bound for the next run, and only the
// first line of one file ever has to be read.
//
// Usage:
//
//	since, ok, err := archive.MostRecentID(dir, "#ferguson")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	writer, err := archive.NewWriter(dir, "#ferguson", log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer writer.Close()
//
//	appended, err := writer.Append(tweet)
package archive
