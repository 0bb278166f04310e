// Package record implements persistence for the VersionRecord.
//
// The FileRepository stores the record as indented JSON in a hidden file
// inside the InstallTarget. Reads never fail: a missing or unreadable record
// is reported as absent so the status panel can fall back to a plain display.
package record
