// Package instr loads instrument descriptions and splits them into staged
// halves.
//
// An instrument is described in CUE:
//
//	instrument: {
//		name: "bifrost"
//		parameters: {
//			ps1speed: 0.0
//			mode:     {type: "string", default: "high"}
//			ei:       float
//		}
//		components: [
//			{name: "source", type: "ESS_butterfly", uses: ["ps1speed"]},
//			{name: "mcpl_split", type: "Arm"},
//			{name: "sample", type: "Incoherent", uses: ["mode"]},
//		]
//	}
//
// The model answers which parameters exist, whether a component exists and
// how the instrument splits at a boundary component. Its canonical JSON
// rendering is the source text the artifact cache fingerprints.
package instr
