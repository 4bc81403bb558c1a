package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"cdfichain/cmd/internal/passphrase"
	"cdfichain/core/types"
	"cdfichain/crypto"
)

const (
	keystorePassEnv = "CDFI_KEYSTORE_PASS"
	rpcTokenEnv     = "CDFI_RPC_TOKEN"
	defaultKeyFile  = "wallet.keystore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 1
	}
	client := newRPCClient(defaultRPCEndpoint(), os.Getenv(rpcTokenEnv))
	pass := passphrase.NewSource(keystorePassEnv, "keystore passphrase")

	var err error
	switch args[0] {
	case "generate-key":
		fresh := passphrase.NewSource(keystorePassEnv, "new keystore passphrase").WithConfirmation()
		err = runGenerateKey(args[1:], stdout, fresh.Get)
	case "address":
		err = runAddress(args[1:], stdout, pass.Get)
	case "send":
		err = runSend(args[1:], stdout, client, pass.Get)
	case "call":
		err = runCall(args[1:], stdout, client)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
		printUsage(stdout)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: cdfi-cli <command> [flags]")
	fmt.Fprintln(w, "  generate-key [--out <keystore>] [--light]")
	fmt.Fprintln(w, "  address [--key <keystore>]")
	fmt.Fprintln(w, "  send [--rpc <url>] [--key <keystore>] [--value <wei>] <method> [params-json]")
	fmt.Fprintln(w, "  call [--rpc <url>] <method> [param ...]")
	fmt.Fprintf(w, "Environment: RPC_URL, %s, %s\n", keystorePassEnv, rpcTokenEnv)
}

func runGenerateKey(args []string, stdout io.Writer, passphrase func() (string, error)) error {
	fs := flag.NewFlagSet("generate-key", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", defaultKeyFile, "keystore file to write")
	light := fs.Bool("light", false, "use light scrypt parameters (tests and local dev only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*out); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite", *out)
	}
	pass, err := passphrase()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	params := crypto.StandardScrypt
	if *light {
		params = crypto.LightScrypt
	}
	if err := crypto.SaveToKeystore(*out, key, pass, params); err != nil {
		return err
	}
	addr := key.Address()
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", *out)
	fmt.Fprintf(stdout, "Address: %s (%s)\n", addr.Hex(), crypto.EncodeBech32(addr))
	return nil
}

func runAddress(args []string, stdout io.Writer, passphrase func() (string, error)) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	keyFile := fs.String("key", defaultKeyFile, "keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keyFile, passphrase)
	if err != nil {
		return err
	}
	addr := key.Address()
	fmt.Fprintf(stdout, "%s\n%s\n", addr.Hex(), crypto.EncodeBech32(addr))
	return nil
}

func runSend(args []string, stdout io.Writer, client *rpcClient, passphrase func() (string, error)) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	endpoint := fs.String("rpc", client.endpoint, "RPC endpoint (overrides RPC_URL)")
	keyFile := fs.String("key", defaultKeyFile, "keystore file")
	valueFlag := fs.String("value", "", "native value to attach, in wei")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client.endpoint = strings.TrimSpace(*endpoint)
	positional := fs.Args()
	if len(positional) < 1 || len(positional) > 2 {
		return fmt.Errorf("expected <method> [params-json]")
	}
	method := positional[0]
	var params json.RawMessage
	if len(positional) == 2 {
		if !json.Valid([]byte(positional[1])) {
			return fmt.Errorf("params must be valid JSON")
		}
		params = json.RawMessage(positional[1])
	}
	var value *big.Int
	if trimmed := strings.TrimSpace(*valueFlag); trimmed != "" {
		parsed, ok := new(big.Int).SetString(trimmed, 10)
		if !ok || parsed.Sign() < 0 {
			return fmt.Errorf("value must be a non-negative integer")
		}
		value = parsed
	}

	key, err := loadKey(*keyFile, passphrase)
	if err != nil {
		return err
	}
	chainID, err := client.chainID()
	if err != nil {
		return fmt.Errorf("fetching chain id: %w", err)
	}
	nonce, err := client.nonce(key.Address().Hex())
	if err != nil {
		return fmt.Errorf("fetching nonce: %w", err)
	}
	tx := &types.Transaction{
		ChainID: new(big.Int).SetUint64(chainID),
		Nonce:   nonce,
		Method:  method,
		Value:   value,
		Params:  params,
	}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return err
	}
	var receipt json.RawMessage
	if err := client.call("cdfi_sendTransaction", []interface{}{tx}, &receipt, true); err != nil {
		return err
	}
	return printJSON(stdout, receipt)
}

func runCall(args []string, stdout io.Writer, client *rpcClient) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	endpoint := fs.String("rpc", client.endpoint, "RPC endpoint (overrides RPC_URL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client.endpoint = strings.TrimSpace(*endpoint)
	positional := fs.Args()
	if len(positional) < 1 {
		return fmt.Errorf("expected <method> [param ...]")
	}
	params := make([]interface{}, 0, len(positional)-1)
	for _, raw := range positional[1:] {
		params = append(params, cliParam(raw))
	}
	var result json.RawMessage
	if err := client.call(positional[0], params, &result, false); err != nil {
		return err
	}
	return printJSON(stdout, result)
}

// cliParam passes JSON literals through and quotes everything else, so both
// `call cdfi_ownerOf 3` and `call cdfi_nonce 0xabc...` work unquoted.
func cliParam(raw string) interface{} {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	return raw
}

func loadKey(path string, passphrase func() (string, error)) (*crypto.PrivateKey, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("keystore %s not found. run cdfi-cli generate-key first", path)
	}
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore %s: %w", path, err)
	}
	return key, nil
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var pretty interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
