package app

import "github.com/spf13/pflag"

// RegisterFlags registers the flags of the serve command on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.Int("max-display-rows", 0, "Maximum number of result rows rendered per search")

	RegisterClusterFlags(flags)
	flags.String("strategy", "", "Coordination strategy: static or dynamic")
	flags.String("partitioning", "", "Static partitioning: striped or block_cyclic")
	flags.Int("blocks-per-worker", 0, "Blocks per worker for block_cyclic and dynamic")
	flags.Duration("result-timeout", 0, "Maximum wait for each worker result")
	flags.String("cluster-mode", "", "Cluster mode: local or nats")

	RegisterDatasetFlags(flags)
}

// RegisterClusterFlags registers the flags shared by coordinators and
// worker processes.
func RegisterClusterFlags(flags *pflag.FlagSet) {
	flags.IntP("workers", "w", 0, "Number of worker processes")
	flags.String("nats-url", "", "NATS server URL for nats cluster mode")
	flags.String("subject-prefix", "", "NATS subject prefix")
}

// RegisterDatasetFlags registers the dataset location flags.
func RegisterDatasetFlags(flags *pflag.FlagSet) {
	flags.StringP("source-dir", "s", "", "Directory with the MOT CSV files")
	flags.StringP("data-dir", "d", "", "Directory for the dataset snapshot and catalog")
	flags.Int("max-rows-per-file", 0, "Read at most this many rows per CSV file (0 reads all)")
	flags.Int("load-parallelism", 0, "Number of CSV files loaded in parallel (0 uses GOMAXPROCS)")
	flags.Duration("build-timeout", 0, "Maximum wait for another process building the dataset")
}

// RegisterWorkerFlags registers the flags of the worker command.
func RegisterWorkerFlags(flags *pflag.FlagSet) {
	flags.IntP("rank", "r", 0, "Worker rank, 1 to workers")
	RegisterClusterFlags(flags)
}
