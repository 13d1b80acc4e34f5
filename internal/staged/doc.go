// Package staged drives a split instrument over a parameter scan.
//
// The upstream half runs once per distinct upstream point and its particle
// output is cached; the downstream half then runs once per scan point,
// reading the best cached upstream particle file. A Runner moves through
//
//	Idle -> PrimaryPending -> PrimaryDone -> SecondaryPending -> Complete
//
// and to Failed from any non-terminal state.
package staged
