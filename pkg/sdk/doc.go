// Package doseaudit provides an embedded Go client for the pediatric
// prescription validator. It composes the same pipeline the API server
// runs, so a Go program can validate prescriptions and manage the
// guideline corpus without going through HTTP.
//
//	client, _ := doseaudit.New(
//	    doseaudit.WithRedis("localhost:6379", ""),
//	    doseaudit.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	result, _ := client.Validate(ctx, doseaudit.Prescription{
//	    DrugName:         "metotrexato",
//	    DoseAmount:       10,
//	    DoseUnit:         "mg",
//	    Frequency:        "weekly",
//	    PatientAgeMonths: 96,
//	    PatientWeightKg:  25,
//	})
//	fmt.Println(result.Decision, result.Rationale)
package doseaudit
