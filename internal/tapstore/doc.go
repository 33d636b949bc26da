// Package tapstore turns resource trees into observable stores.
//
// A store resource returns Output: its plain state plus an Api, a facade
// created once per instance whose State and Actions always read the latest
// commit. Holders of an Api never need to re-acquire it after an update.
//
// AsStore wraps such a resource into a Store (Api, Subscribe, FlushSync);
// UseStore does the same from inside another resource. LookupResources and
// UseSubscribable cover the common composition patterns on top of that.
package tapstore
