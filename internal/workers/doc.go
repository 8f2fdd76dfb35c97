/*
Package workers sizes thread and connection pools in containers.

runtime.NumCPU reports the host's CPUs; GOMAXPROCS follows the cgroup CPU
limit. Pool sizes are derived from GOMAXPROCS so a pod limited to 2 cores on a
64-core node does not start 64 libvips threads:

	vips.Startup(&vips.Config{ConcurrencyLevel: workers.ForCPU(workers.VipsConcurrencyEnv, 4)})
	db.SetMaxOpenConns(workers.ForIO(workers.DBConnectionsEnv, 10))

Each helper takes an environment variable that overrides the computed count.
*/
package workers
