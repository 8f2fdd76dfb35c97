/*
Package vfs defines the data model shared by the watcher, the reconciliation
runner and the category resolver.

A workspace has two roots. The virtual tree is what users browse and edit:
after a file is dropped into it, the file data is moved into the physical
tree and replaced by a small identity sidecar (<name>.aclgene) carrying a
stable hash. Moving or renaming the sidecar moves the physical file; deleting
it deletes the physical file.

The package holds the domain records (FileMappingInfo, Content, Category,
Label, EventLog), the repository interfaces the persistence layer implements,
and the sentinel errors used across packages:

  - ErrNotFound: a repository lookup matched nothing
  - ErrPrecondition: a reconciliation step cannot run; the item is dropped
  - ErrWorkspaceMismatch, ErrUnsupportedMime, ErrContentExists: specific
    precondition failures, all matching ErrPrecondition with errors.Is

In-memory implementations of the repositories live in package vfstest.
*/
package vfs
