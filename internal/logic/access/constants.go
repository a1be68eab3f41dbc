package access

import "fmt"

const (
	// AnnotationSSHUsers carries "login:secret" on the workload so the image
	// entrypoint can materialize the account on the next restart even when
	// the live exec injection failed.
	AnnotationSSHUsers = "sandbox.k8s.skillcoder.com/ssh-users"

	// companionSuffix names the SSH-enabled replacement pod minted when the
	// original workload image has no port 22 at all.
	companionSuffix = "-ssh-companion"
)

// accountSetupCommand builds the shell snippet exec'd inside the workload to
// create the account live: user, password, local sudo, workspace directory.
func accountSetupCommand(login, secret string) []string {
	script := fmt.Sprintf(
		"useradd -m -s /bin/bash %[1]s && echo '%[1]s:%[2]s' | chpasswd && "+
			"usermod -aG sudo %[1]s && mkdir -p /home/%[1]s/workspace && "+
			"chown %[1]s:%[1]s /home/%[1]s/workspace",
		login, secret,
	)

	return []string{"bash", "-c", script}
}
