package ir

// IRVersion identifies the layout of ProgramSpec and trace records. It is
// written next to compiled programs so a reader can reject IR it predates.
const IRVersion = "1"

// Version is the rindel release, reported by the CLI.
const Version = "0.1.0"
