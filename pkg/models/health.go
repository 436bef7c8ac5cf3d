package models

// MaxBootFailures is the default safe-mode threshold (§3, §4.J).
const MaxBootFailures = 3
