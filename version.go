package waypoint

// Version is the release of the SDK and CLI.
const Version = "0.4.0"
