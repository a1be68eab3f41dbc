package tenant

const (
	LabelOwnerID   = "sandbox.k8s.skillcoder.com/owner-id"
	LabelOwner     = "sandbox.k8s.skillcoder.com/owner"
	LabelManagedBy = "app.kubernetes.io/managed-by"

	ManagedByValue = "sandboxd"
)

// Sub-resource names inside a tenant namespace.
const (
	serviceAccountName = "tenant"
	roleName           = "tenant"
	roleBindingName    = "tenant-binding"
	resourceQuotaName  = "tenant-quota"
	networkPolicyName  = "tenant-isolation"
)

// QuotaLimits is the hard resource ceiling of one tenant namespace.
// Quantities use Kubernetes notation.
type QuotaLimits struct {
	Pods            string
	RequestsCPU     string
	RequestsMemory  string
	LimitsCPU       string
	LimitsMemory    string
	PVCs            string
	RequestsStorage string
	Services        string
	ConfigMaps      string
	Secrets         string
}

// DefaultQuota bounds the blast radius of a single tenant.
func DefaultQuota() QuotaLimits {
	return QuotaLimits{
		Pods:            "10",
		RequestsCPU:     "4",
		RequestsMemory:  "8Gi",
		LimitsCPU:       "8",
		LimitsMemory:    "16Gi",
		PVCs:            "5",
		RequestsStorage: "20Gi",
		Services:        "10",
		ConfigMaps:      "20",
		Secrets:         "20",
	}
}

// protectedNamespaces is deliberately hard-coded, not configurable: an
// owner-identity collision must never be able to cascade-delete shared
// infrastructure.
var protectedNamespaces = map[string]bool{
	"default":         true,
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
}
