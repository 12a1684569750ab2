package cmd

import "time"

const (
	DEF_CONNECT_TIMEOUT = time.Second * 30
	DEF_MONITOR_TICK    = time.Second * 3
	DEF_HISTORY_LIMIT   = 10
)

const DESCRIPTION = `
sinsfetch downloads the SINS multi-node acoustic dataset from its
Zenodo records. It keeps a bounded pool of resumable transfers busy,
skips files that are already on disk, and can extract and verify the
archives afterwards and mail a summary.
`

const (
	DownloadDescription = `The download command fetches every file of the selected
nodes into the download root. Files already present are
skipped, so running it again picks up whatever failed.

Example:
        sinsfetch download --nodes 1,3 --max-concurrent 4
					OR
        sinsfetch --nodes 1,3 --dry-run

`
	GroupsDescription = `The groups command prints the node registry with the
Zenodo record of every node and the number of files
fetched for it.

Example:
        sinsfetch groups

`
	MonitorDescription = `The monitor command watches a download root and prints
the number and total size of the downloaded archives,
along with the growth rate, until interrupted.

Example:
        sinsfetch monitor --path ./SINS --interval 5s

`
	ExtractDescription = `The extract command unzips every archive found under the
target directory into the output directory, verifies that
each one was extracted and mails the outcome.

Use --dry-run to only send a test email.

Example:
        sinsfetch extract --target ./SINS --outdir ./SINS_unzipped --config email.yaml

`
	PasswordDescription = `The set-password command reads the SMTP password from
standard input and stores it in the OS keyring under the
sender address of the email section, so the configuration
file can leave the password empty.

Example:
        sinsfetch set-password --config email.yaml

`
	HistoryDescription = `The history command lists previous download runs from the
run ledger, or the events of one run.

Example:
        sinsfetch history --limit 5
        sinsfetch history --run <run id> --format yaml

`
)
