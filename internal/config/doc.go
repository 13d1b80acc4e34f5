// Package config loads the restage YAML configuration file.
//
// A configuration file is optional. When present it is validated against
// an embedded JSON Schema before being mapped onto Config, so unknown keys
// and wrongly typed values are rejected with their document location:
//
//	data_dir: /scratch/restage
//	min_batch: 20000
//	parallel: 4
//	timeout: 2h
//	tolerances:
//	  speed: 0.1
//	tools:
//	  compiler: [mcstas-compile, --optimize]
//	  mcpltool: /opt/mcpl/bin/mcpltool
//	families:
//	  bifrost:
//	    calculator: [bifrost-choppers]
package config
