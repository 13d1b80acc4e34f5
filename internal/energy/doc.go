// Package energy turns energy or wavelength scan axes into the chopper
// timing parameters of a specific instrument family.
//
// Families are held in an explicit ordered registry; the first family whose
// predicate matches the instrument name wins, and an instrument matching no
// family passes through unchanged.
package energy
