package env

import (
	"log"
	"strconv"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

type EnvStruct struct {
	HOME        string `zog:"HOME"`
	PORT        int    `zog:"ORCAD_ENV_PORT"`
	GENAI_TOKEN string `zog:"GENAI_TOKEN"`
	GIT_TOKEN   string `zog:"GIT_TOKEN"`
	ENVIRONMENT string `zog:"ORCAD_ENVIRONMENT"`
	LISTEN_ADDR string
	LISTEN_PROT string
	BASE_URL    string
}

var env *EnvStruct

var EnvSchema = z.Struct(z.Shape{
	"HOME":        z.String(),
	"PORT":        z.Int().Default(58201),
	"GENAI_TOKEN": z.String().Optional(),
	"GIT_TOKEN":   z.String().Optional(),
	"ENVIRONMENT": z.String().Default("STAGING"),
})

func Get() *EnvStruct {
	if env == nil {
		env = &EnvStruct{}
		errs := EnvSchema.Parse(zenv.NewDataProvider(), env)
		if errs != nil {
			log.Fatal("[Orcad] Failed to parse environment variables", errs)
		}

		env.LISTEN_PROT = "http://"
		env.LISTEN_ADDR = "localhost:" + strconv.Itoa(env.PORT)
		env.BASE_URL = env.LISTEN_PROT + env.LISTEN_ADDR
	}
	return env
}

// Reset clears the cached environment. Test helper.
func Reset() {
	env = nil
}
