// Command tonguelab imports ultrasound speech recording sessions,
// derives articulation metrics over them, and saves the results for
// later analysis.
package main
