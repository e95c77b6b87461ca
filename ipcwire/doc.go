// Package ipcwire implements component C7: the fixed-size framed codec
// UNIX seqpacket actor channels speak to each other (spec §4.7). A frame
// carries a bounded number of "members" — 64-bit words that are either an
// IEEE-754 double or, when tagged with a signaling NaN bit pattern, one of
// bool/string/fd/actor-address/nil — plus a per-member key/value string
// buffer and, out of band, any file descriptors riding the frame's
// SCM_RIGHTS ancillary data.
package ipcwire
