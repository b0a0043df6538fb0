// Package resolver maps free-text room and building references to campus
// map coordinates.
//
// The building table is embedded at build time and loaded once during
// process initialisation into an immutable lookup structure; there is no
// mutation API.
package resolver
