/*
The sync package implements a vaultsync run: one pass of copy-only transfers
between the local vault and its remote.

There are two kinds of tasks:
1) Downloads -- The remote inbox is copied into the local inbox. Only files
   modified within the inbox max age are considered, so old scans that were
   already processed and moved out of the inbox aren't fetched again.
2) Uploads -- The local receipts, summaries and bookmarks are copied to the
   matching remote folders.

Tasks never delete. A file is only replaced when the copy being overwritten
is older than the source, so re-running a sync with nothing new is a no-op.

The Coordinator runs the tasks required by the mode strictly one after
another while holding a process-external lock, and writes the status record
when it's done. A failing task is logged and counted as zero; it doesn't
stop the tasks after it.
*/
package sync
