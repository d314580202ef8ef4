// Package reference resolves the location of a kill against the read-only EVE reference data service.
//
// A [Client] fetches single resources, addressed either by resource kind and ID or by the absolute reference
// (href) another resource links to. A [Resolver] chains three such lookups, solar system to constellation to
// region, into a [Location]. Every failure along the way is reported as [*LookupError].
package reference
