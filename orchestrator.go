/*
Package orchestrator holds the application level constants, configuration
and shared resources of the orchestrator service, which turns uploaded API
specifications into running mock services.
*/
package orchestrator

// BuildRevision stores the commit in the git repository at build time and is
// specified with -ldflags at build time.
var BuildRevision = ""

const (
	// QueueName prefixes the job queue of the service.
	QueueName = "orchestrator.service"

	ShortDateFormat = "2006-01-02T15:04"
)
