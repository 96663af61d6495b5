// Package domain models USGS earthquake catalog data and the precursor
// analysis built on top of it.
//
// # Data Source
//
// Events come from the FDSN event web service of the USGS Earthquake Hazards
// Program, https://earthquake.usgs.gov/fdsnws/event/1/. Queries are plain
// GET requests with key=value parameters and format=csv. The service answers
// with HTTP 204 and an empty body when nothing matches.
//
// # Catalog Conventions
//
// CSV columns, in service order:
//
//	time,latitude,longitude,depth,mag,magType,nst,gap,dmin,rms,net,id,updated,
//	place,type,horizontalError,depthError,magError,magNst,status,
//	locationSource,magSource
//
// Time format:
//
//	ISO-8601 UTC with milliseconds, e.g. "2016-10-30T06:40:18.170Z".
//	Files written by older tooling use "2016-10-30 06:40:18.170"; both parse.
//
// Magnitude:
//
//	Empty for a handful of historical events. Parsed as NaN so it never
//	compares true and never qualifies as a micro event.
//
// # Main Events and Precursors
//
// A main event is a strong earthquake identified by its 0-based row position
// in the main-events table. Its precursors are all catalog events within a
// fixed radius during the year before it. Every precursor row carries a
// main_event column pointing back at its main event; the main event itself
// is normally the first precursor row of its own group because the query
// window ends one second after it.
//
// # Micro-Event Frequency
//
// Within a group, a micro event has a magnitude more than 3 below the group's
// largest magnitude. See [MicroEventFrequency] for the derived curve.
package domain
