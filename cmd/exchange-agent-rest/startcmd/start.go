/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-exchange-go/pkg/controller"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/protocol/exchange"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport"
	httptransport "github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-exchange-go/pkg/framework/agent"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "EXCHANGE_AGENT_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "EXCHANGE_AGENT_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "EXCHANGE_AGENT_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to use for exchange records, connections and credentials. " +
		"Supported options: mem, leveldb. " +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "EXCHANGE_AGENT_DATABASE_URL"
	databaseURLFlagShorthand = "v"
	databaseURLFlagUsage     = "The location of the database. Not needed if using memstore." +
		" For leveldb this is the directory holding the database files." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "EXCHANGE_AGENT_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	// webhook url flag.
	agentWebhookFlagName      = "webhook-url"
	agentWebhookEnvKey        = "EXCHANGE_AGENT_WEBHOOK_URL"
	agentWebhookFlagShorthand = "w"
	agentWebhookFlagUsage     = "URL to send notifications to." +
		" This flag can be repeated, allowing for multiple listeners." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentWebhookEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "EXCHANGE_AGENT_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// outbound transport flag.
	agentOutboundTransportFlagName      = "outbound-transport"
	agentOutboundTransportEnvKey        = "EXCHANGE_AGENT_OUTBOUND_TRANSPORT"
	agentOutboundTransportFlagShorthand = "o"
	agentOutboundTransportFlagUsage     = "Outbound transport type." +
		" This flag can be repeated, allowing for multiple transports." +
		" Possible values [http] [ws]. Defaults to both if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentOutboundTransportEnvKey

	// outbound retry flag.
	agentOutboundRetriesFlagName  = "outbound-retries"
	agentOutboundRetriesEnvKey    = "EXCHANGE_AGENT_OUTBOUND_RETRIES"
	agentOutboundRetriesFlagUsage = "Number of retries of a failed outbound send, one second apart. Defaults to 0." +
		" Alternatively, this can be set with the following environment variable: " + agentOutboundRetriesEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = "c"
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = "k"
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	// inbound host flag.
	agentInboundHostFlagName      = "inbound-host"
	agentInboundHostEnvKey        = "EXCHANGE_AGENT_INBOUND_HOST"
	agentInboundHostFlagShorthand = "i"
	agentInboundHostFlagUsage     = "Inbound Host Name:Port. This is used internally to start the DIDComm HTTP" +
		" inbound server. The agent only sends messages if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	// inbound host external url flag.
	agentInboundHostExternalFlagName      = "inbound-host-external"
	agentInboundHostExternalEnvKey        = "EXCHANGE_AGENT_INBOUND_HOST_EXTERNAL"
	agentInboundHostExternalFlagShorthand = "e"
	agentInboundHostExternalFlagUsage     = "URL of the inbound server as seen externally." +
		" It is the service endpoint announced to counterparts." +
		" If not provided, then http:// followed by the internal inbound host is used." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostExternalEnvKey

	// auto accept flag.
	agentAutoAcceptFlagName  = "auto-accept"
	agentAutoAcceptEnvKey    = "EXCHANGE_AGENT_AUTO_ACCEPT"
	agentAutoAcceptFlagUsage = "Default auto-accept policy of credential and proof exchanges." +
		" Possible values [never] [contentApproved] [always]. Defaults to never if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentAutoAcceptEnvKey

	// transport return route option flag.
	agentTransportReturnRouteFlagName  = "transport-return-route"
	agentTransportReturnRouteEnvKey    = "EXCHANGE_AGENT_TRANSPORT_RETURN_ROUTE"
	agentTransportReturnRouteFlagUsage = "Transport Return Route option. Possible values [none] [all]." +
		" Alternatively, this can be set with the following environment variable: " + agentTransportReturnRouteEnvKey

	httpProtocol      = "http"
	websocketProtocol = "ws"

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"

	outboundTimeout = 30 * time.Second
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("exchange-agent-rest")
)

type agentParameters struct {
	server                            server
	host, token, transportReturnRoute string
	inboundHost, inboundHostExternal  string
	tlsCertFile, tlsKeyFile           string
	webhookURLs, outboundTransports   []string
	autoAccept                        exchange.AutoAccept
	outboundRetries                   uint64
	dbParam                           *dbParam
}

type dbParam struct {
	dbType  string
	url     string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(url string) (storage.Provider, error){
	databaseTypeMemOption: func(_ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path string) (storage.Provider, error) { // nolint:unparam
		return leveldb.NewProvider(path), nil
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router) // nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen, gocyclo
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  `Start a credential exchange agent controller`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, agentTokenFlagName, agentTokenEnvKey, true)
			if err != nil {
				return err
			}

			inboundHost, err := getUserSetVar(cmd, agentInboundHostFlagName, agentInboundHostEnvKey, true)
			if err != nil {
				return err
			}

			inboundHostExternal, err := getUserSetVar(cmd, agentInboundHostExternalFlagName,
				agentInboundHostExternalEnvKey, true)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(cmd)
			if err != nil {
				return err
			}

			webhookURLs, err := getUserSetVars(cmd, agentWebhookFlagName, agentWebhookEnvKey, true)
			if err != nil {
				return err
			}

			outboundTransports, err := getUserSetVars(cmd, agentOutboundTransportFlagName,
				agentOutboundTransportEnvKey, true)
			if err != nil {
				return err
			}

			outboundRetries, err := getOutboundRetries(cmd)
			if err != nil {
				return err
			}

			autoAccept, err := getAutoAcceptValue(cmd)
			if err != nil {
				return err
			}

			transportReturnRoute, err := getUserSetVar(cmd, agentTransportReturnRouteFlagName,
				agentTransportReturnRouteEnvKey, true)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:               server,
				host:                 host,
				token:                token,
				inboundHost:          inboundHost,
				inboundHostExternal:  inboundHostExternal,
				dbParam:              dbParam,
				webhookURLs:          webhookURLs,
				outboundTransports:   outboundTransports,
				outboundRetries:      outboundRetries,
				autoAccept:           autoAccept,
				transportReturnRoute: transportReturnRoute,
				tlsCertFile:          tlsCertFile,
				tlsKeyFile:           tlsKeyFile,
			}

			return startAgent(parameters)
		},
	}
}

func getDBParam(cmd *cobra.Command) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	dbParam.url, err = getUserSetVar(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getAutoAcceptValue(cmd *cobra.Command) (exchange.AutoAccept, error) {
	v, err := getUserSetVar(cmd, agentAutoAcceptFlagName, agentAutoAcceptEnvKey, true)
	if err != nil {
		return "", err
	}

	return exchange.ParseAutoAccept(v)
}

func getOutboundRetries(cmd *cobra.Command) (uint64, error) {
	v, err := getUserSetVar(cmd, agentOutboundRetriesFlagName, agentOutboundRetriesEnvKey, true)
	if err != nil {
		return 0, err
	}

	if v == "" {
		return 0, nil
	}

	retries, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse outbound retries %s: %w", v, err)
	}

	return retries, nil
}

func createFlags(startCmd *cobra.Command) {
	// agent host flag
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)

	// agent token flag
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)

	// inbound host flag
	startCmd.Flags().StringP(agentInboundHostFlagName, agentInboundHostFlagShorthand, "", agentInboundHostFlagUsage)

	// inbound external host flag
	startCmd.Flags().StringP(agentInboundHostExternalFlagName, agentInboundHostExternalFlagShorthand, "",
		agentInboundHostExternalFlagUsage)

	// db type
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)

	// db url
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)

	// webhook url flag
	startCmd.Flags().StringSliceP(agentWebhookFlagName, agentWebhookFlagShorthand, []string{}, agentWebhookFlagUsage)

	// log level
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// agent outbound transport flag
	startCmd.Flags().StringSliceP(agentOutboundTransportFlagName, agentOutboundTransportFlagShorthand, []string{},
		agentOutboundTransportFlagUsage)

	// outbound retries
	startCmd.Flags().StringP(agentOutboundRetriesFlagName, "", "", agentOutboundRetriesFlagUsage)

	// auto accept flag
	startCmd.Flags().StringP(agentAutoAcceptFlagName, "", "", agentAutoAcceptFlagUsage)

	// transport return route option flag
	startCmd.Flags().StringP(agentTransportReturnRouteFlagName, "", "", agentTransportReturnRouteFlagUsage)

	// tls cert file
	startCmd.Flags().StringP(agentTLSCertFileFlagName,
		agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)

	// tls key file
	startCmd.Flags().StringP(agentTLSKeyFileFlagName,
		agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)

	// db timeout
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getOutboundTransportOpts(outboundTransports []string) ([]agent.Option, error) {
	if len(outboundTransports) == 0 {
		return nil, nil
	}

	var transports []transport.OutboundTransport

	for _, outboundTransport := range outboundTransports {
		switch outboundTransport {
		case httpProtocol:
			outbound, err := httptransport.NewOutbound(httptransport.WithOutboundTimeout(outboundTimeout))
			if err != nil {
				return nil, fmt.Errorf("http outbound transport init failed: %w", err)
			}

			transports = append(transports, outbound)
		case websocketProtocol:
			transports = append(transports, ws.NewOutbound())
		default:
			return nil, fmt.Errorf("outbound transport [%s] not supported", outboundTransport)
		}
	}

	return []agent.Option{agent.WithOutboundTransports(transports...)}, nil
}

func serviceEndpoint(parameters *agentParameters) string {
	if parameters.inboundHostExternal != "" {
		return parameters.inboundHostExternal
	}

	if parameters.inboundHost != "" {
		return httpProtocol + "://" + parameters.inboundHost
	}

	return ""
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startAgent(parameters *agentParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	a, err := createAgent(parameters)
	if err != nil {
		return err
	}

	defer func() {
		if e := a.Close(); e != nil {
			logger.Warnf("failed to close agent: %s", e)
		}
	}()

	handlers, err := controller.GetRESTHandlers(a.Context(), controller.WithWebhookURLs(parameters.webhookURLs...))
	if err != nil {
		return fmt.Errorf("failed to start exchange agent rest on port [%s], failed to get rest service api :  %w",
			parameters.host, err)
	}

	router := mux.NewRouter()

	if parameters.token != "" {
		router.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	inboundErrs, err := startInbound(a, parameters)
	if err != nil {
		return err
	}

	logger.Infof("Starting exchange agent rest on host [%s]", parameters.host)

	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start exchange agent rest on port [%s], cause:  %w", parameters.host, err)
	}

	select {
	case err = <-inboundErrs:
		return err
	default:
		return nil
	}
}

// startInbound serves the DIDComm HTTP inbound endpoint in the background. Its failure is reported on the
// returned channel.
func startInbound(a *agent.Agent, parameters *agentParameters) (<-chan error, error) {
	errs := make(chan error, 1)

	if parameters.inboundHost == "" {
		logger.Warnf("no inbound host set, the agent will not receive messages")

		return errs, nil
	}

	handler, err := a.InboundHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to create inbound handler : %w", err)
	}

	logger.Infof("Starting DIDComm inbound on host [%s], endpoint [%s]", parameters.inboundHost,
		a.Context().ServiceEndpoint())

	go func() {
		if e := parameters.server.ListenAndServe(parameters.inboundHost, handler,
			parameters.tlsCertFile, parameters.tlsKeyFile); e != nil {
			logger.Errorf("inbound server on [%s] stopped: %s", parameters.inboundHost, e)

			errs <- fmt.Errorf("failed to start inbound on port [%s], cause:  %w", parameters.inboundHost, e)
		}
	}()

	return errs, nil
}

func createAgent(parameters *agentParameters) (*agent.Agent, error) {
	storePro, err := createStoreProviders(parameters)
	if err != nil {
		return nil, err
	}

	opts := []agent.Option{agent.WithStoreProvider(storePro)}

	if endpoint := serviceEndpoint(parameters); endpoint != "" {
		opts = append(opts, agent.WithServiceEndpoint(endpoint))
	}

	if parameters.transportReturnRoute != "" {
		opts = append(opts, agent.WithTransportReturnRoute(parameters.transportReturnRoute))
	}

	if parameters.autoAccept != "" {
		opts = append(opts, agent.WithAutoAccept(parameters.autoAccept))
	}

	if parameters.outboundRetries > 0 {
		opts = append(opts, agent.WithOutboundRetry(parameters.outboundRetries, time.Second))
	}

	outboundTransportOpts, err := getOutboundTransportOpts(parameters.outboundTransports)
	if err != nil {
		return nil, fmt.Errorf("failed to start exchange agent rest on port [%s], failed to outbound transport opts : %w",
			parameters.host, err)
	}

	opts = append(opts, outboundTransportOpts...)

	a, err := agent.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start exchange agent rest on port [%s], failed to initialize agent :  %w",
			parameters.host, err)
	}

	return a, nil
}

func createStoreProviders(parameters *agentParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[parameters.dbParam.dbType]
	if !supported {
		return nil, fmt.Errorf("key database type not set to a valid type." +
			" run start --help to see the available options")
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam.url)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.url, err)
	}

	return store, nil
}
