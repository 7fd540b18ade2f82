// Package lightsail implements the AWS Lightsail provider driver (C1).
// Grounded on original_source/provider/lightsail.rs (which shells out to
// the `aws` CLI), reimplemented against the real SDK in the
// config-then-NewFromConfig shape of wudi-gateway's
// internal/proxy/lambda/lambda.go.
package lightsail

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lightsail"
	"github.com/aws/aws-sdk-go-v2/service/lightsail/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/geph-official/bridge-phalanx/internal/config"
	"github.com/geph-official/bridge-phalanx/internal/provider"
)

const blueprintID = "debian_11"

// Driver is the AWS Lightsail provider driver.
type Driver struct {
	provider.NoOverload

	cfg      config.LightsailConfig
	client   *lightsail.Client
	creating *provider.CreatingRegistry
}

// New creates a Lightsail driver from its configuration.
func New(ctx context.Context, cfg config.LightsailConfig) (*Driver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &Driver{
		cfg:      cfg,
		client:   lightsail.NewFromConfig(awsCfg),
		creating: provider.NewCreatingRegistry(),
	}, nil
}

func instanceName(id string) string { return "aws-phalanx-" + id }

// CreateServer allocates a Lightsail instance, opens all ports, waits
// for reachability, and promotes the default admin user's authorized
// keys to root (spec.md §4.1) — Lightsail's Debian blueprint disables
// direct root login by default, so this bootstrap step is specific to
// this driver and is not routed through internal/sshexec, which assumes
// root access already works.
func (d *Driver) CreateServer(ctx context.Context, id string) (string, error) {
	name := instanceName(id)
	end := d.creating.Begin(name)
	defer end()

	_, err := d.client.CreateInstances(ctx, &lightsail.CreateInstancesInput{
		InstanceNames:    []string{name},
		AvailabilityZone: aws.String(d.cfg.AvailabilityZone),
		BlueprintId:      aws.String(blueprintID),
		BundleId:         aws.String(d.cfg.BundleID),
		KeyPairName:      aws.String(d.cfg.KeyPairName),
	})
	if err != nil {
		return "", fmt.Errorf("creating lightsail instance %s: %w", name, err)
	}

	operation := func() (string, error) {
		out, err := d.client.GetInstance(ctx, &lightsail.GetInstanceInput{InstanceName: aws.String(name)})
		if err != nil {
			return "", err
		}
		if out.Instance == nil || out.Instance.PublicIpAddress == nil || *out.Instance.PublicIpAddress == "" {
			return "", fmt.Errorf("lightsail instance %s has no ip yet", name)
		}
		return *out.Instance.PublicIpAddress, nil
	}
	ipAddr, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(0),
		backoff.WithBackOff(backoff.NewConstantBackOff(time.Second)))
	if err != nil {
		return "", fmt.Errorf("waiting for lightsail instance %s ip: %w", name, err)
	}

	openPorts := func() (struct{}, error) {
		_, err := d.client.OpenInstancePublicPorts(ctx, &lightsail.OpenInstancePublicPortsInput{
			InstanceName: aws.String(name),
			PortInfo: &types.PortInfo{
				FromPort: 0,
				ToPort:   65535,
				Protocol: types.NetworkProtocolAll,
				Cidrs:    []string{"0.0.0.0/0"},
			},
		})
		return struct{}{}, err
	}
	if _, err := backoff.Retry(ctx, openPorts,
		backoff.WithMaxTries(0),
		backoff.WithBackOff(backoff.NewConstantBackOff(10*time.Second)),
	); err != nil {
		return "", fmt.Errorf("opening ports on lightsail instance %s: %w", name, err)
	}

	provider.WaitReachable(ctx, ipAddr)

	if err := enableRootAccess(ctx, ipAddr); err != nil {
		return "", fmt.Errorf("enabling root access on %s: %w", ipAddr, err)
	}
	return ipAddr, nil
}

func enableRootAccess(ctx context.Context, ipAddr string) error {
	cmd := exec.CommandContext(ctx, "ssh",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"admin@"+ipAddr,
		"sudo cp ~admin/.ssh/authorized_keys ~root/.ssh/authorized_keys",
	)
	return cmd.Run()
}

// RetainByID deletes every Lightsail instance carrying the fleet prefix
// whose mangled id keep rejects, skipping names still within the
// creating TTL.
func (d *Driver) RetainByID(ctx context.Context, keep func(id string) bool) error {
	out, err := d.client.GetInstances(ctx, &lightsail.GetInstancesInput{})
	if err != nil {
		return fmt.Errorf("listing lightsail instances: %w", err)
	}
	for _, inst := range out.Instances {
		if inst.Name == nil {
			continue
		}
		name := *inst.Name
		const prefix = "aws-phalanx-"
		if len(name) < len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		id := name[len(prefix):]
		if keep(id) || d.creating.Contains(name) {
			continue
		}
		if _, err := d.client.DeleteInstance(ctx, &lightsail.DeleteInstanceInput{InstanceName: inst.Name}); err != nil {
			return fmt.Errorf("deleting lightsail instance %s: %w", name, err)
		}
	}
	return nil
}

var _ provider.Provider = (*Driver)(nil)
