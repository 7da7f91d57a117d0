// Package config loads the clovis-desktop configuration file and resolves
// the packaged backend resources it points at.
//
// Two file formats are accepted, chosen by extension:
//   - .json / .jsonc: JSON with comments, stripped with github.com/tidwall/jsonc
//     before parsing with encoding/json
//   - .yaml / .yml: parsed with gopkg.in/yaml.v3
//
// Every field is optional; values missing from the file keep their
// defaults from Default(). Command-line flags are applied on top by the
// cli package.
package config
