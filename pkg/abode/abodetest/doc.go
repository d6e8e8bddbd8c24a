// Package abodetest provides an in-memory Abode session for tests.
package abodetest
