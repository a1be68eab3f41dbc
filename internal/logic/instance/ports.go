package instance

import "hash/fnv"

// NodePortFor computes the deterministic external port for an instance's SSH
// service: base + FNV-1a(name) mod portRange. Reproducible for a given name;
// two different names can collide, in which case the cluster rejects the
// second service and the failure is logged for reissue.
func NodePortFor(name string, base, portRange int) int32 {
	h := fnv.New32a()
	h.Write([]byte(name))

	return int32(base + int(h.Sum32())%portRange)
}
