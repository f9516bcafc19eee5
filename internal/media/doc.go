// Package media holds the data model shared by the probe, planner, concat
// and libav packages: rationals, audio/video stream parameters, probed
// source descriptors, the resolved target format, decoded frame handles,
// sample buffers and encoded packets.
//
// Nothing here talks to a codec library. Backends convert their native
// frames into these types at the package boundary.
package media
