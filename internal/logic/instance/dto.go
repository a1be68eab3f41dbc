package instance

import (
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Status is the last-observed lifecycle state of an instance. It is a
// projection of cluster truth, not a command, and may lag reality. Values
// outside the constants below are cluster phases passed through verbatim.
type Status string

const (
	StatusCreating Status = "Creating"
	StatusRunning  Status = "Running"
	StatusStopped  Status = "Stopped"
	StatusDeleted  Status = "Deleted"
)

// terminal reports whether reconciliation should leave the status alone when
// the backing workload is confirmed absent.
func (s Status) terminal() bool {
	return s == StatusStopped || s == StatusDeleted
}

// Instance is one sandbox. Name doubles as the record key and is unique
// cluster-wide; WorkloadRef tracks the backing pod and diverges from Name
// after an SSH companion upgrade.
type Instance struct {
	Name        string    `json:"name"`
	OwnerID     string    `json:"ownerId"`
	OwnerHandle string    `json:"ownerHandle"`
	TemplateID  string    `json:"templateId"`
	Namespace   string    `json:"namespace"`
	WorkloadRef string    `json:"workloadRef"`
	ServicePort int32     `json:"servicePort"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Template is the catalog collaborator's answer for one image template.
type Template struct {
	ID         string `json:"id"`
	BaseImage  string `json:"baseImage"`
	Technology string `json:"technology"`
	SSHCapable bool   `json:"sshCapable"`
}

// PodSpec is the workload descriptor submitted to the cluster.
type PodSpec struct {
	Namespace  string
	Name       string
	Image      string
	Labels     map[string]string
	Env        map[string]string
	SSHEnabled bool
}

// ServiceSpec describes a NodePort service exposing container port 22.
type ServiceSpec struct {
	Namespace   string
	Name        string
	SelectorApp string
	NodePort    int32
}

// Usage is the instantaneous resource consumption of the backing workload.
type Usage struct {
	CPU    *resource.Quantity
	Memory *resource.Quantity
}

// ReconcileSummary reports one batch reconciliation pass.
type ReconcileSummary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
}
