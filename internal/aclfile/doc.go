/*
Package aclfile reads and writes identity sidecar files.

A sidecar (<name>.aclgene) sits in the virtual tree in place of the file it
stands for. Its only required content is the ACLHASH entry, a 32-digit hex
identity generated once and never changed; the watcher uses it to find the
file's mapping no matter where the sidecar has been moved.

# Wire format

Records are encoded as protobuf messages with these field numbers:

	1  magic        string   always "ACLGENE"
	2  version      int32    currently 1
	3  last_update  message  { 1 seconds int64, 2 nanos int32 }
	4  data         repeated message { 1 key string, 2 value string }

Decoding rejects records with a different magic or a newer version and
skips unknown fields.
*/
package aclfile
