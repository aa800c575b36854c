// Package config loads add-in manifests written in CUE.
//
// Manifests are unified with an embedded closed schema, so unknown fields,
// type errors and conflicts between files are reported at load time and
// omitted fields take their schema defaults:
//
//	name: "Greeter"
//	scripts: ["greeter.star"]
//	locale: "ru_RU"
//	log: level: "debug"
package config
