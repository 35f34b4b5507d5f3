// Gateway Worker — сервис, который регистрируется в API gateway
// и обрабатывает work packages из RabbitMQ.
//
// Процесс:
//   - Регистрируется в gateway и получает токен и параметры брокера
//   - Поддерживает сессию heartbeat'ами с ротацией токена
//   - Обрабатывает сообщения очереди и публикует ответы в reply-to
//   - При сбое heartbeat сбрасывает сессию и регистрируется заново
//   - При SIGINT/SIGTERM/SIGUSR1/SIGUSR2 дерегистрируется и завершается
//
// Использование:
//
//	gateway-worker [run]          запуск сервиса (по умолчанию)
//	gateway-worker routes [-f]    таблица маршрутов
//	gateway-worker version        версия сборки
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/gateway-worker/internal/cli"
	"github.com/shaiso/gateway-worker/internal/handler"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Register in the gateway and process work packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	rootCmd := &cobra.Command{
		Use:           "gateway-worker",
		Short:         "Gateway worker — registers in the API gateway and serves its queue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		runCmd,
		cli.NewRoutesCmd(handler.DefaultRouter, outputFn),
		cli.NewVersionCmd(version, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
