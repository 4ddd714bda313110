package mongo_test

import (
	"strings"
	"testing"
	"time"

	"github.com/influx6/mgoquery/db/mongo"
	"github.com/influx6/mgoquery/tests"
	"github.com/spf13/viper"
)

//==============================================================================

// TestConnectionString validates the composed mongodb:// address.
func TestConnectionString(t *testing.T) {
	t.Logf("Given the need to compose a connection string")
	{
		t.Logf("\tWhen no host is configured")
		{
			c := mongo.Config{Database: "think"}
			if s := c.ConnectionString(false); s != "mongodb://127.0.0.1:27017/think" {
				t.Fatalf("\t%s\tShould have used the default host and port: %s", tests.Failed, s)
			}
			t.Logf("\t%s\tShould have used the default host and port", tests.Success)
		}

		t.Logf("\tWhen several hosts share fewer ports")
		{
			c := mongo.Config{
				Host:     []string{"a", "b", "c"},
				Port:     []int{1, 2},
				Database: "think",
			}

			addrs := strings.Join(c.Addrs(), ",")
			if addrs != "a:1,b:2,c:1" {
				t.Fatalf("\t%s\tShould have fallen back to the first port: %s", tests.Failed, addrs)
			}
			t.Logf("\t%s\tShould have fallen back to the first port", tests.Success)
		}

		t.Logf("\tWhen credentials and options are configured")
		{
			c := mongo.Config{
				Host:     []string{"db"},
				Port:     []int{27018},
				User:     "admin",
				Password: "s3cret",
				Database: "think",
				Options:  map[string]interface{}{"replicaSet": "rs0", "authSource": "admin"},
			}

			want := "mongodb://admin:s3cret@db:27018/think?authSource=admin&replicaSet=rs0"
			if s := c.ConnectionString(false); s != want {
				t.Fatalf("\t%s\tShould have produced %s: %s", tests.Failed, want, s)
			}
			t.Logf("\t%s\tShould have produced %s", tests.Success, want)

			masked := c.ConnectionString(true)
			if strings.Contains(masked, "s3cret") || !strings.Contains(masked, "admin:xxxxxx@") {
				t.Fatalf("\t%s\tShould have masked the password: %s", tests.Failed, masked)
			}
			t.Logf("\t%s\tShould have masked the password", tests.Success)

			info := c.DialInfo()
			if info.Source != "admin" || info.ReplicaSetName != "rs0" || info.Username != "admin" || info.Database != "think" {
				t.Fatalf("\t%s\tShould have carried the options into the dial info: %+v", tests.Failed, info)
			}
			t.Logf("\t%s\tShould have carried the options into the dial info", tests.Success)
		}
	}
}

//==============================================================================

// TestMaxPoolSize validates the pool size precedence of a config.
func TestMaxPoolSize(t *testing.T) {
	t.Logf("Given the need to size the pool from a config")
	{
		cases := []struct {
			Name string
			Conf mongo.Config
			Want int
		}{
			{Name: "poolSize over connectionLimit", Conf: mongo.Config{ConnectionLimit: 5, Options: map[string]interface{}{"poolSize": 10}}, Want: 10},
			{Name: "lowercased maxpoolsize", Conf: mongo.Config{ConnectionLimit: 5, Options: map[string]interface{}{"maxpoolsize": "7"}}, Want: 7},
			{Name: "connectionLimit only", Conf: mongo.Config{ConnectionLimit: 5}, Want: 5},
			{Name: "nothing", Conf: mongo.Config{}, Want: 5},
		}

		for _, c := range cases {
			t.Logf("\tWhen sizing with %s", c.Name)
			{
				if n := c.Conf.MaxPoolSize(); n != c.Want {
					t.Fatalf("\t%s\tShould have sized the pool to %d: %d", tests.Failed, c.Want, n)
				}
				t.Logf("\t%s\tShould have sized the pool to %d", tests.Success, c.Want)
			}
		}

		t.Logf("\tWhen no timeouts are configured")
		{
			var c mongo.Config
			if c.AcquireTimeout() != 3*time.Second || c.DialTimeout() != mongo.DefaultDialTimeout {
				t.Fatalf("\t%s\tShould have used the default timeouts: %s %s", tests.Failed, c.AcquireTimeout(), c.DialTimeout())
			}
			t.Logf("\t%s\tShould have used the default timeouts", tests.Success)

			if !c.ShouldLogConnect() || c.PageSizeOrDefault() != 10 {
				t.Fatalf("\t%s\tShould have defaulted logConnect and pagesize", tests.Failed)
			}
			t.Logf("\t%s\tShould have defaulted logConnect and pagesize", tests.Success)
		}
	}
}

//==============================================================================

// TestLoadConfig validates decoding a config through viper.
func TestLoadConfig(t *testing.T) {
	t.Logf("Given a yaml configuration with scalar host and port")
	{
		doc := `
mongo:
  host: 10.0.0.1
  port: 27019
  database: think
  prefix: think_
  connectionLimit: 8
  acquireTimeoutMillis: 500
  logConnect: false
  options:
    poolSize: 12
`
		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
			t.Fatalf("\t%s\tShould have read the document: %v", tests.Failed, err)
		}

		c, err := mongo.LoadConfig(v, "mongo")
		if err != nil {
			t.Fatalf("\t%s\tShould have decoded the config: %v", tests.Failed, err)
		}
		t.Logf("\t%s\tShould have decoded the config", tests.Success)

		if len(c.Host) != 1 || c.Host[0] != "10.0.0.1" || len(c.Port) != 1 || c.Port[0] != 27019 {
			t.Fatalf("\t%s\tShould have lifted host and port into lists: %+v", tests.Failed, c)
		}
		t.Logf("\t%s\tShould have lifted host and port into lists", tests.Success)

		if c.MaxPoolSize() != 12 || c.AcquireTimeout() != 500*time.Millisecond || c.ShouldLogConnect() {
			t.Fatalf("\t%s\tShould have kept sizing and logging settings: %+v", tests.Failed, c)
		}
		t.Logf("\t%s\tShould have kept sizing and logging settings", tests.Success)

		if c.Table("user") != "think_user" {
			t.Fatalf("\t%s\tShould have prefixed table names: %s", tests.Failed, c.Table("user"))
		}
		t.Logf("\t%s\tShould have prefixed table names", tests.Success)

		if _, err := mongo.LoadConfig(v, "missing"); err == nil {
			t.Fatalf("\t%s\tShould have failed for a missing section", tests.Failed)
		}
		t.Logf("\t%s\tShould have failed for a missing section", tests.Success)

		t.Logf("\tWhen the environment overrides the file")
		{
			t.Setenv("MGOQUERY_MONGO_DATABASE", "other")
			t.Setenv("MGOQUERY_MONGO_HOST", "a,b")
			t.Setenv("MGOQUERY_MONGO_USER", "admin")

			v.SetEnvPrefix("MGOQUERY")
			v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			v.AutomaticEnv()
			v.BindEnv("mongo.user")

			c, err := mongo.LoadConfig(v, "mongo")
			if err != nil {
				t.Fatalf("\t%s\tShould have decoded the config: %v", tests.Failed, err)
			}

			if c.Database != "other" || c.User != "admin" || len(c.Host) != 2 || c.Host[1] != "b" {
				t.Fatalf("\t%s\tShould have applied the environment: %+v", tests.Failed, c)
			}
			t.Logf("\t%s\tShould have applied the environment", tests.Success)
		}
	}
}

//==============================================================================

// TestRegistry validates one manager per distinct configuration.
func TestRegistry(t *testing.T) {
	t.Logf("Given the need to share pools between equal configurations")
	{
		r := mongo.NewRegistry(nil)

		a := mongo.Config{Host: []string{"a"}, Database: "think", Options: map[string]interface{}{"poolSize": 3}}
		b := mongo.Config{Host: []string{"a"}, Database: "think", Options: map[string]interface{}{"poolsize": "3"}}
		c := mongo.Config{Host: []string{"a"}, Database: "other"}

		if a.Fingerprint() != b.Fingerprint() {
			t.Fatalf("\t%s\tShould have matched equivalent configs", tests.Failed)
		}
		t.Logf("\t%s\tShould have matched equivalent configs", tests.Success)

		if r.Get(a) != r.Get(b) {
			t.Fatalf("\t%s\tShould have returned the same manager", tests.Failed)
		}
		t.Logf("\t%s\tShould have returned the same manager", tests.Success)

		if r.Get(a) == r.Get(c) || r.Len() != 2 {
			t.Fatalf("\t%s\tShould have kept a manager per database: %d", tests.Failed, r.Len())
		}
		t.Logf("\t%s\tShould have kept a manager per database", tests.Success)

		max, _ := r.Get(a).Pool().Size()
		if max != 3 {
			t.Fatalf("\t%s\tShould have sized the pool from the config: %d", tests.Failed, max)
		}
		t.Logf("\t%s\tShould have sized the pool from the config", tests.Success)

		r.Shutdown("test")
		if r.Len() != 0 {
			t.Fatalf("\t%s\tShould have emptied the registry: %d", tests.Failed, r.Len())
		}
		t.Logf("\t%s\tShould have emptied the registry", tests.Success)
	}
}
