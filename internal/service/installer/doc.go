// Package installer extracts a downloaded release archive and installs its
// single top-level folder into the InstallTarget.
//
// An existing installation is moved to a sibling backup directory first
// (one generation is kept), the new tree is copied in with permissions and
// modification times preserved, and the well-known AIO-OCIO config file is
// published under the name the host's color management loads.
package installer
