// Package fixture loads CUE descriptions of a metadata database and seeds
// a store with them.
//
// A fixture declares sites, time series, algorithms, groups, computations
// and derived-data records. Computations and groups refer to algorithms,
// groups and series by name, so a fixture reads the way an operator
// describes a test bed:
//
//	series: ["SiteA.Stage.15Minute.raw", "SiteA.Stage.15Minute.rev"]
//
//	algorithm: CopyAlgorithm: {
//		exec_class: "decodes.tsdb.algo.CopyAlgorithm"
//		parms: [{role: "input", type: "i"}, {role: "output", type: "o"}]
//	}
//
//	computation: "copy-A": {
//		algorithm: "CopyAlgorithm"
//		parms: input: tsid:  "SiteA.Stage.15Minute.raw"
//		parms: output: tsid: "SiteA.Stage.15Minute.rev"
//	}
package fixture
