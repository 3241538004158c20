// cmd/server/main.go
package main

import (
	"context"
	"log"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sableworks/agentconsole/internal/api"
	"github.com/sableworks/agentconsole/internal/app"
	"github.com/sableworks/agentconsole/internal/services"

	// 注册所有LLM提供商
	_ "github.com/sableworks/agentconsole/internal/llm/providers/anthropic"
	_ "github.com/sableworks/agentconsole/internal/llm/providers/dashscope"
	_ "github.com/sableworks/agentconsole/internal/llm/providers/google"
	_ "github.com/sableworks/agentconsole/internal/llm/providers/openai"
	_ "github.com/sableworks/agentconsole/internal/llm/providers/xinference"
)

func main() {
	root := newRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(services.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentconsole",
		Short: "AI代理管理控制台后端",
		Long: `agentconsole 是浏览器端AI代理管理控制台的后端服务。

提供MCP工具配置、LLM提供商配置、图文数据文档编排
以及模型连通性测试的HTTP接口。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP服务",
		Example: `  # 默认端口8080启动
  agentconsole serve

  # 指定端口
  agentconsole serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				os.Setenv("PORT", port)
			}

			log.Println("🚀 启动 agentconsole 服务器...")

			if err := app.Initialize(); err != nil {
				return err
			}

			router, err := api.SetupRouter()
			if err != nil {
				return err
			}
			log.Println("✅ 路由设置完成")

			return app.Run(router)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "监听端口，默认取PORT环境变量")
	return cmd
}
