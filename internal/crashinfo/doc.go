// Package crashinfo defines the crash report data model: the append-only
// report structure built inside the fault handler, the builder used to
// assemble it under fault-safe rules, and the JSON wire format the receiver
// ships to the endpoint.
package crashinfo
