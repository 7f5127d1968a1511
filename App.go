package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

const ExitCodeMainError = 1

func RunApp() error {
	commonlog.Configure(1, nil)
	gin.SetMode(gin.ReleaseMode)

	config, err := LoadConfig(os.Getenv(ConfigFilepathEnv))
	if err != nil {
		return err
	}

	serviceContainer, err := BuildServiceContainer(config)

	if err == nil {
		serviceContainer.WebhookDispatcher.Start()
		serviceContainer.BatchWorker.Start()
		defer serviceContainer.WebhookDispatcher.Close()
		defer serviceContainer.BatchWorker.Close()
		defer serviceContainer.Database.Close()

		err = http.ListenAndServe(config.Listen, serviceContainer.Router)
	}

	return err
}

func HandleExitError(errStream io.Writer, err error) int {
	if err != nil {
		_, _ = fmt.Fprintln(errStream, err)
	}

	if err != nil {
		return ExitCodeMainError
	}

	return 0
}
