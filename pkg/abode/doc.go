// Package abode describes the Abode session client the bridge drives.
//
// The client itself (login, session cache, device modeling and the event
// stream) lives in a vendor binding that registers a Driver with Register,
// in the same way database/sql drivers do. The bridge only talks to the
// interfaces declared here.
package abode
