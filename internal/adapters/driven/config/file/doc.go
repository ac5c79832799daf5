// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with MCE_ environment overrides
//   - PromptStore: user-editable prompt templates with embedded defaults
//
// LoadConfig turns a ConfigStore into a validated Config.
package file
