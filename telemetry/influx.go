package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
)

const defaultMeasurement = "pacball"

// InfluxSink writes one point per change, tagged with the machine name and
// the snapshot kind.
type InfluxSink struct {
	Host         string
	Organization string
	Bucket       string
	Measurement  string
	Token        string
	Machine      string

	client   influxdb2.Client
	writeApi api.WriteAPIBlocking
}

func NewInfluxSink(host, token, organization, bucket, measurement, machine string) *InfluxSink {
	if measurement == "" {
		measurement = defaultMeasurement
	}
	is := &InfluxSink{
		Host:         host,
		Organization: organization,
		Bucket:       bucket,
		Measurement:  measurement,
		Token:        token,
		Machine:      machine,
	}
	is.client = influxdb2.NewClient(is.Host, is.Token)
	is.writeApi = is.client.WriteAPIBlocking(is.Organization, is.Bucket)
	return is
}

func (is *InfluxSink) String() string {
	return "influx"
}

func (is *InfluxSink) Write(ctx context.Context, kind string, fields map[string]bool, ts time.Time) error {
	values := make(map[string]interface{}, len(fields))
	for name, state := range fields {
		values[name] = state
	}

	tags := map[string]string{"kind": kind}
	if is.Machine != "" {
		tags["machine"] = is.Machine
	}

	err := is.writeApi.WritePoint(ctx, influxdb2.NewPoint(is.Measurement, tags, values, ts))
	if err != nil {
		return errors.Wrapf(err, "failed to write %s point to %s", kind, is.Host)
	}
	return nil
}

func (is *InfluxSink) Close() error {
	is.client.Close()
	return nil
}
