// Package fetch implements resumable single-file transfers.
//
// Every Transfer continues from the byte length already present at the
// destination instead of starting over, so an interrupted run picks up where
// it stopped. HTTP(S), FTP(S) and SFTP are implemented natively; the curl
// transfer shells out the same way the first version of this tool did.
// Files are written through an afero.Fs.
package fetch
