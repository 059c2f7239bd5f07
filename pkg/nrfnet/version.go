package nrfnet

// Version is the node version.
const Version = "0.1.0"
